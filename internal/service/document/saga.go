package document

import "context"

// saga 记录已完成步骤的补偿操作，失败时逆序执行
type saga struct {
	compensations []func(ctx context.Context)
}

// onRollback 步骤成功后注册其补偿
func (s *saga) onRollback(fn func(ctx context.Context)) {
	s.compensations = append(s.compensations, fn)
}

// rollback 逆序执行补偿，请求被取消后仍会执行
func (s *saga) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(s.compensations) - 1; i >= 0; i-- {
		s.compensations[i](ctx)
	}
	s.compensations = nil
}
