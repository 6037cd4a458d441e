package response

import (
	"futureflow/internal/consts"
	"futureflow/pkg/errors"
	"futureflow/pkg/errors/ecode"
	"net/http"

	"github.com/gin-gonic/gin"
)

// 代表响应给客户端的的一个消息结构，包括错误码，错误信息，响应数据
type ApiResponse struct {
	RequestId string      `json:"request_id"` // 请求的唯一ID
	Code      int         `json:"code"`       // 错误码 0表示无错误
	Message   string      `json:"message"`    // 提示信息
	Data      interface{} `json:"data"`
}

// 发送json格式数据
func JSON(c *gin.Context, err error, data interface{}) {
	code, message := errors.DecodeErr(err)
	c.JSON(statusOf(code), ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      code,
		Message:   message,
		Data:      data,
	})
}

func statusOf(code int) int {
	switch code {
	case ecode.Success:
		return http.StatusOK
	case ecode.NotFoundErr:
		return http.StatusNotFound
	case ecode.ConflictErr:
		return http.StatusConflict
	case ecode.Unavailable:
		return http.StatusServiceUnavailable
	case ecode.Unknown:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
