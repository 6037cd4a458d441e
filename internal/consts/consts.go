package consts

const (
	// RequestId 请求id名称
	RequestId = "request_id"
)
