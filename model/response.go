package model

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse 首页与健康检查
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Version string `json:"version,omitempty"`
	Remover string `json:"remover,omitempty"`
}

// BuildInfo 构建信息，由 -ldflags 注入
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	BuildID   string `json:"build_id"`
	GitCommit string `json:"git_commit"`
	GitBranch string `json:"git_branch"`
}
