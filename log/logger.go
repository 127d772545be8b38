package log

import (
	"os"
	"path/filepath"

	"github.com/hayat-his/hcx-app/conf"
	"github.com/sirupsen/logrus"
)

var (
	API      logrus.FieldLogger
	Request  logrus.FieldLogger
	Exchange logrus.FieldLogger
	Session  logrus.FieldLogger

	Worker         logrus.FieldLogger
	ExchangeWorker logrus.FieldLogger
)

func init() {
	API = Logger(logrus.New(), conf.GetEnv("HCX_ERROR_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))
	Request = Logger(logrus.New(), conf.GetEnv("HCX_REQUEST_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))
	Exchange = Logger(logrus.New(), conf.GetEnv("HCX_EXCHANGE_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))
	Session = Logger(logrus.New(), conf.GetEnv("HCX_SESSION_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))

	Worker = Logger(logrus.New(), conf.GetEnv("HCX_WORKER_ERROR_LOG"),
		"worker", conf.GetEnv("ENVIRONMENT"))
	ExchangeWorker = Logger(logrus.New(), conf.GetEnv("HCX_EXCHANGE_LOG"),
		"worker", conf.GetEnv("ENVIRONMENT"))
}

func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	logger.SetFormatter(&logrus.JSONFormatter{})

	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
