package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/0xReLogic/Beacon/testutil"
)

func main() {
	addr := flag.String("addr", "http://localhost:80", "base URL of the running service")
	to := flag.Duration("timeout", 2*time.Second, "per-request timeout")
	flag.Parse()
	if err := testutil.RunSmokeClient(*addr, *to); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Smoke test OK")
}
