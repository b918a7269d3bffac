package tests

import (
	"os"
	"testing"

	"github.com/elimulab/elimu/core"
)

func TestMain(m *testing.M) {
	// the error handler must behave as in production
	core.Conf.Debug = false
	core.Conf.TestMode = true

	os.Exit(m.Run())
}
