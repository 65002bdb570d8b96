// Command coachctl administers a coaching backend database: it seeds
// companies and users, issues access tokens and maintains the cache.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
