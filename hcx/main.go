package main

import (
	"os"

	"github.com/hayat-his/hcx-app/hcx/hcxcli"
	"github.com/hayat-his/hcx-app/log"
)

func main() {
	if err := hcxcli.GetApp().Run(os.Args); err != nil {
		log.API.Fatal(err)
	}
}
