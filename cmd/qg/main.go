package main

import (
	"questguild/cmd/qg/root"
	"questguild/internal/config"
	"questguild/internal/ui"
)

func main() {
	if err := root.Execute(); err != nil {
		config.Exitf("%s", ui.Bad.Render(ui.IconError+" "+err.Error()))
	}
}
