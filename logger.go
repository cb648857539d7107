package rdns

import "github.com/sirupsen/logrus"

// Log is the logger used throughout the package. Callers embedding this
// library can point it at their own logrus instance.
var Log = logrus.New()

func init() {
	Log.SetLevel(logrus.InfoLevel)
}
