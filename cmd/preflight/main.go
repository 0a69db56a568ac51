// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	env := func(k string) string { return strings.TrimSpace(os.Getenv("ALERT_" + k)) }

	admin := env("ADMIN_API_KEYS")
	pub := env("PUBLIC_API_KEYS")
	addr := env("ADDR")
	slack := env("SLACK_WEBHOOK_URL")
	hook := env("WEBHOOK_URL")
	cooldown := env("COOLDOWN")

	if admin == "" {
		warn("ALERT_ADMIN_API_KEYS is empty (report/clear routes are open to anyone).")
	}
	for name, v := range map[string]string{"ALERT_ADMIN_API_KEYS": admin, "ALERT_PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	switch {
	case slack != "" && hook != "":
		fail("set either ALERT_SLACK_WEBHOOK_URL or ALERT_WEBHOOK_URL, not both (single channel).")
	case slack != "":
		ok("notification channel: slack")
	case hook != "":
		ok("notification channel: webhook")
	default:
		warn("no notification channel configured; alerts will be dropped.")
	}

	if addr == "" {
		warn("ALERT_ADDR is empty; default 127.0.0.1:8080 will be used.")
	} else {
		ok("ALERT_ADDR=" + addr)
	}

	if cooldown == "" {
		ok("ALERT_COOLDOWN unset; default 60s")
	} else {
		ok("ALERT_COOLDOWN=" + cooldown)
	}

	ok("preflight passed")
}
