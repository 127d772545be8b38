package conf

/*
   This package wraps viper, a package designed to handle config files, for the
   hcx app. Configuration is primarily environment-variable driven; when a
   local.env file is present (local development), its values are loaded into
   viper and take precedence until explicitly unset.

   Assumptions:
   1. The configuration file is an env file.
   2. The configuration file, once made available to the application, stays
   immutable during the uptime of the application (exception is test).
*/

import (
	"os"
	"strconv"
	"testing"

	"github.com/spf13/viper"
)

// An instance of the viper struct containing the conf information. Only made
// accessible through public functions GetEnv, SetEnv, etc.
var envVars viper.Viper

const (
	configGood    uint8 = 0
	configBad     uint8 = 1
	noConfigFound uint8 = 2
)

var state = configGood

// setup is called once by init to read and parse the config file.
func setup(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("local")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		state = configBad
	}
	return v
}

func init() {
	// Possible config file locations: local development and deployed targets.
	locations := []string{
		"/go/src/github.com/hayat-his/hcx-app/shared_files/decrypted",
		"/etc/hcx-app",
	}

	if found, loc := findEnv(locations); found {
		envVars = *setup(loc)
	} else {
		state = noConfigFound
	}
}

func findEnv(locations []string) (bool, string) {
	for _, loc := range locations {
		if _, err := os.Stat(loc + "/local.env"); err == nil {
			return true, loc
		}
	}
	return false, ""
}

// GetEnv retrieves the value stored in conf. If it does not exist, the
// process environment is consulted; "" is returned when neither has it.
func GetEnv(key string) string {
	if state == configGood {
		value := envVars.GetString(key)

		// Even when the config file loaded, a key missing from conf may still
		// live in the environment. Copy it over to prevent additional OS calls.
		if value == "" {
			if v, ok := os.LookupEnv(key); ok {
				test := &testing.T{}
				_ = SetEnv(test, key, v)
				value = v
			}
		}
		return value
	}

	return os.Getenv(key)
}

// GetEnvInt is GetEnv for integer values; missing or unparsable values fall
// back to the provided default.
func GetEnvInt(key string, fallback int) int {
	if value := GetEnv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

// LookupEnv augments os.LookupEnv to look in the viper struct first.
func LookupEnv(key string) (string, bool) {
	if state == configGood {
		if value := envVars.Get(key); value != nil && value != "" {
			return value.(string), true
		}
		if v, exist := os.LookupEnv(key); exist {
			test := &testing.T{}
			_ = SetEnv(test, key, v)
			return v, exist
		}
		return "", false
	}

	return os.LookupEnv(key)
}

// SetEnv adds key values into conf. This function should only be used either
// in this package itself or testing. The protect parameter is of type
// *testing.T to ensure developers knowingly use it in the appropriate scope.
func SetEnv(protect *testing.T, key string, value string) error {
	var err error
	if state == configGood {
		envVars.Set(key, value)
	} else {
		err = os.Setenv(key, value)
	}
	return err
}

// UnsetEnv "unsets" a variable. Like SetEnv, this should only be used either
// in this package itself or testing.
func UnsetEnv(protect *testing.T, key string) error {
	if state == configGood {
		envVars.Set(key, "")
	}
	return os.Unsetenv(key)
}
