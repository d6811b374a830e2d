package udp_test

import "github.com/okian/fallsense/pkg/logger"

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}
