package utils

import (
	"context"
	"fmt"
	"time"
)

// Retry 执行 fn，失败时最多重试到 retries 次
// delay 为两次之间的间隔，backoff=true 表示指数退避，ctx 结束时立即返回
func Retry(ctx context.Context, retries int, delay time.Duration, backoff bool, fn func() error) error {
	var err error
	for i := 0; i < retries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == retries-1 {
			break
		}
		sleep := delay
		if backoff {
			sleep = delay * time.Duration(1<<i)
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return fmt.Errorf("retry canceled after %d attempts: %w", i+1, err)
		}
	}
	return fmt.Errorf("after %d attempts, last error: %w", retries, err)
}
