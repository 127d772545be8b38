// Package monitoring wraps the New Relic agent. With no license key
// configured every helper degrades to a no-op, so callers never branch.
package monitoring

import (
	"fmt"
	"net/http"

	"github.com/newrelic/go-agent/v3/integrations/nrlogrus"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/hayat-his/hcx-app/conf"
	"github.com/hayat-his/hcx-app/log"
)

var a *apm

type apm struct {
	App *newrelic.Application
}

func GetMonitor() *apm {
	if a == nil {
		target := conf.GetEnv("DEPLOYMENT_TARGET")
		if target == "" {
			target = "local"
		}
		license := conf.GetEnv("NEW_RELIC_LICENSE_KEY")
		app, err := newrelic.NewApplication(
			newrelic.ConfigAppName(fmt.Sprintf("HCX-%s", target)),
			newrelic.ConfigLicense(license),
			newrelic.ConfigEnabled(license != ""),
			nrlogrus.ConfigStandardLogger(),
			func(cfg *newrelic.Config) {
				cfg.HighSecurity = true
			},
		)
		if err != nil {
			log.API.Error(err)
		}
		a = &apm{App: app}
	}
	return a
}

// WrapHandler instruments one route when the agent is live and hands the
// handler straight back otherwise.
func (a *apm) WrapHandler(pattern string, h http.HandlerFunc) (string, http.HandlerFunc) {
	if a.App != nil {
		return newrelic.WrapHandleFunc(a.App, pattern, h)
	}
	return pattern, h
}

// Start opens a background transaction, for work with no inbound request.
func (a *apm) Start(name string) *newrelic.Transaction {
	if a.App == nil {
		return nil
	}
	return a.App.StartTransaction(name)
}

func (a *apm) End(txn *newrelic.Transaction) {
	if txn != nil {
		txn.End()
	}
}
