package listing

import (
	"context"

	log "InfoDash/internal/log"
	"InfoDash/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

// 支付密码由服务端保管与校验；本地只额外存一份 bcrypt 哈希，
// 用于购买前的快速校验，哈希写失败不阻塞主流程

// PayPasswordSet 查询支付密码是否已设置
func (s *Service) PayPasswordSet(ctx context.Context) (bool, error) {
	return s.api.CheckPayPassword(ctx)
}

// SetPayPassword 首次设置支付密码，成功后缓存本地哈希
func (s *Service) SetPayPassword(ctx context.Context, password string) error {
	if !payPasswordPattern.MatchString(password) {
		return errValidation("支付密码必须为6位数字")
	}
	if err := s.api.SetPayPassword(ctx, password); err != nil {
		return err
	}
	s.cachePayPasswordHash(password)
	return nil
}

// ModifyPayPassword 修改支付密码，成功后刷新本地哈希
func (s *Service) ModifyPayPassword(ctx context.Context, current, next string) error {
	if !payPasswordPattern.MatchString(next) {
		return errValidation("新支付密码必须为6位数字")
	}
	if err := s.api.ModifyPayPassword(ctx, current, next); err != nil {
		return err
	}
	s.cachePayPasswordHash(next)
	return nil
}

// VerifyPayPassword 远程校验支付密码是否正确
func (s *Service) VerifyPayPassword(ctx context.Context, password string) (bool, error) {
	if !payPasswordPattern.MatchString(password) {
		return false, errValidation("支付密码必须为6位数字")
	}
	return s.api.VerifyPayPassword(ctx, password)
}

// ForgotPayPassword 通过注册邮箱重置支付密码，成功后刷新本地哈希
func (s *Service) ForgotPayPassword(ctx context.Context, email, next string) (string, error) {
	if email == "" {
		return "", errValidation("请输入注册邮箱")
	}
	if !payPasswordPattern.MatchString(next) {
		return "", errValidation("新支付密码必须为6位数字")
	}
	msg, err := s.api.ForgotPayPassword(ctx, email, next)
	if err != nil {
		return "", err
	}
	s.cachePayPasswordHash(next)
	return msg, nil
}

// cachePayPasswordHash 本地缓存 bcrypt 哈希
func (s *Service) cachePayPasswordHash(password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Warnf("生成支付密码哈希失败: %v", err)
		return
	}
	if err := s.store.Set(storage.KeyPayPasswordHash, string(hash)); err != nil {
		log.Warnf("缓存支付密码哈希失败: %v", err)
	}
}

// verifyPayPasswordHash 本地校验支付密码
func verifyPayPasswordHash(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidationError 本地校验错误，不会发往服务端
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

func errValidation(msg string) error { return ValidationError(msg) }
