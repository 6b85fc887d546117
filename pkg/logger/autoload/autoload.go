// Package autoload configures the global logger from LOG_* env on import.
package autoload

import (
	configx "github.com/tanpawarit/Chative-Concierge/pkg/config"
	logx "github.com/tanpawarit/Chative-Concierge/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
