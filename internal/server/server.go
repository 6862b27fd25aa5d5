package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Server 顶层路由：/api/* 交给 API 路由器，其余请求走静态资源，
// 文件不存在时回退到 index.html 以支持前端 SPA 路由
type Server struct {
	router  *mux.Router
	distDir string
}

// New 创建顶层服务器
func New(apiRouter http.Handler, distDir string) *Server {
	if distDir == "" {
		distDir = "dist"
	}

	root := mux.NewRouter()
	root.StrictSlash(true)

	// 注册 API 路由
	root.PathPrefix("/api/").Handler(apiRouter)

	// 静态文件服务
	fs := http.FileServer(http.Dir(distDir))
	root.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API 请求不应进入该函数，保险起见仍转交
		if strings.HasPrefix(r.URL.Path, "/api/") {
			apiRouter.ServeHTTP(w, r)
			return
		}

		// 检查文件是否存在
		f, err := http.Dir(distDir).Open(r.URL.Path)
		if err != nil {
			// 文件不存在时返回 index.html 以支持 SPA
			http.ServeFile(w, r, distDir+"/index.html")
			return
		}
		f.Close()

		// 提供静态文件
		fs.ServeHTTP(w, r)
	})

	return &Server{router: root, distDir: distDir}
}

// Handler 返回可挂到 http.Server 的处理器
func (s *Server) Handler() http.Handler {
	return s.router
}
