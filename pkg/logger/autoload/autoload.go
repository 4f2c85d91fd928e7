package autoload

import (
	configx "github.com/carebridge-ai/virtual-triage/pkg/config"
	logx "github.com/carebridge-ai/virtual-triage/pkg/logger"
)

func init() {
	conf := configx.MustNew[logx.Config]("LOG")
	logx.Init(*conf)
}
