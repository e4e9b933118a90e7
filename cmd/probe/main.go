// Command probe checks a running parlor server's liveness and readiness
// endpoints. Intended for container health checks and deploy scripts;
// exits non-zero when either probe fails.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	var (
		base    = flag.String("url", "http://127.0.0.1:8080", "server base URL")
		timeout = flag.Duration("timeout", 3*time.Second, "per-request timeout")
		quiet   = flag.Bool("q", false, "suppress output, exit code only")
	)
	flag.Parse()

	client := &fasthttp.Client{
		ReadTimeout:  *timeout,
		WriteTimeout: *timeout,
	}

	ok := true
	for _, path := range []string{"/healthz", "/readyz"} {
		status, body, err := check(client, *base+path, *timeout)
		if err != nil {
			ok = false
			if !*quiet {
				fmt.Printf("%-9s FAIL %v\n", path, err)
			}
			continue
		}
		if status != fasthttp.StatusOK {
			ok = false
		}
		if !*quiet {
			fmt.Printf("%-9s %d %s\n", path, status, body)
		}
	}
	if !ok {
		os.Exit(1)
	}
}

func check(c *fasthttp.Client, url string, timeout time.Duration) (int, string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	if err := c.DoTimeout(req, resp, timeout); err != nil {
		return 0, "", err
	}
	return resp.StatusCode(), string(resp.Body()), nil
}
