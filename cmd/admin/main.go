package main

import (
	"context"
	"os"

	"github.com/Luismorlan/picfeed/utils/dotenv"
	"github.com/Luismorlan/picfeed/utils/flag"
)

func main() {
	flag.ServiceName = flag.AdminCli
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
