package testutil

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Packages importing testutil only see log output when tests run verbosely
func init() {
	logrus.SetLevel(logrus.TraceLevel)

	for _, arg := range os.Args[1:] {
		if arg == "-test.v" || strings.HasPrefix(arg, "-test.v=true") {
			return
		}
	}
	logrus.SetOutput(io.Discard)
}
