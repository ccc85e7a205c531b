// Package autoload initialises the global logger from LOG_* variables when
// imported for side effects.
package autoload

import (
	configx "github.com/tanpawarit/Chative-Dealership-Assistant/pkg/config"
	logx "github.com/tanpawarit/Chative-Dealership-Assistant/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
