package main

import (
	"flag"
	"log"
	"os"

	"garden-siege/server/logging"
	"garden-siege/server/logging/sinks"
	"garden-siege/server/rendezvous"
)

func main() {
	var addr string
	var perMinute int
	flag.StringVar(&addr, "addr", ":8090", "listen address")
	flag.IntVar(&perMinute, "rate", 120, "requests per minute per client before 429")
	flag.Parse()

	router := logging.NewRouter(logging.DefaultConfig(), nil, nil, sinks.NewConsoleSink(os.Stderr))

	daemon, err := rendezvous.New(rendezvous.Config{
		Publisher:         router,
		RequestsPerMinute: perMinute,
	})
	if err != nil {
		log.Fatalf("rendezvousd: %v", err)
	}

	log.Printf("rendezvousd listening on %s", addr)
	if err := daemon.Listen(addr); err != nil {
		log.Fatalf("rendezvousd: %v", err)
	}
}
