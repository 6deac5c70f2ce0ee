// Package version 提供应用版本信息
// 版本号通过 go build -ldflags 注入，/health 与启动 Banner 展示
package version

// 构建信息变量，通过 ldflags 注入
// 构建命令示例:
//
//	go build -ldflags "-X abroadPlan/internal/version.Version=$(git describe --tags --always) \
//	  -X abroadPlan/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X 'abroadPlan/internal/version.BuildTime=$(date +%Y-%m-%d\ %H:%M:%S\ %z)'"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String 单行版本描述，用于日志与 OTel resource
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}
