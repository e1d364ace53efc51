/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package. Call Parse
	from main, parsing in init would break `go test` flags.
*/

package flag

import (
	"flag"
)

const (
	APIServer = "api_server"
	AdminCli  = "admin_cli"
)

var (
	IsDevelopment bool
	ByPassAuth    bool
	ServiceName   = APIServer
	ListenAddr    string
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", APIServer, "'api_server' or 'admin_cli'")
	flag.BoolVar(&ByPassAuth, "bypass_auth", false, "trust the X-User-Id header instead of verifying session tokens, development only")
	flag.StringVar(&ListenAddr, "addr", ":8080", "address the api server listens on")
}

func Parse() {
	flag.Parse()
}
