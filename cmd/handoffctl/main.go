// Command handoffctl signs mobile bearer tokens for local testing of the
// handoff endpoints.
package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/academyreg/handoff/internal/auth"
	"github.com/academyreg/handoff/internal/models"
	"github.com/jessevdk/go-flags"
)

type Options struct {
	Secret   string        `long:"mobile-jwt-secret" env:"MOBILE_JWT_SECRET" required:"true" description:"HMAC secret shared with the server"`
	UserID   string        `long:"user-id" required:"true" description:"User id claim"`
	Username string        `long:"username" description:"Username claim"`
	Name     string        `long:"name" description:"Display name claim"`
	Role     string        `long:"role" default:"STAFF" choice:"ADMIN" choice:"CASHIER" choice:"STAFF" choice:"SECURITY" choice:"TEACHER" description:"Role claim"`
	TTL      time.Duration `long:"ttl" default:"1h" description:"Token lifetime"`
	Server   string        `long:"server" description:"Print a ready-made exchange URL for this server base URL"`
	Redirect string        `long:"redirect" default:"/" description:"Redirect target for the printed exchange URL"`
}

func main() {
	var opts Options

	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS]"
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	token, err := auth.NewBearerSigner([]byte(opts.Secret)).Sign(models.BearerIdentity{
		UserID:      opts.UserID,
		Username:    opts.Username,
		DisplayName: opts.Name,
		Role:        models.Role(opts.Role),
	}, opts.TTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	if opts.Server == "" {
		fmt.Println(token)
		return
	}

	q := url.Values{"token": {token}, "redirect": {opts.Redirect}}
	fmt.Printf("%s/api/mobile/web-auth?%s\n", strings.TrimRight(opts.Server, "/"), q.Encode())
}
