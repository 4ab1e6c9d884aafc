package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the shared application logger.
var Logger = logrus.New()

var once sync.Once

// Init configures the shared logger. Logs go to stdout and, when
// LOG_FILE is set, to a size-rotated file as well.
func Init() {
	once.Do(func() {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		Logger.SetLevel(logrus.InfoLevel)
		if os.Getenv("LOG_LEVEL") == "debug" {
			Logger.SetLevel(logrus.DebugLevel)
		}

		if path := os.Getenv("LOG_FILE"); path != "" {
			rotated := &lumberjack.Logger{
				Filename:   path,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
			Logger.SetOutput(rotated)
		} else {
			Logger.SetOutput(os.Stdout)
		}
	})
}
