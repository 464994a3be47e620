package main

import (
	"context"
	"fmt"
	"os"

	"github.com/selimozcann/statuspeek/internal/config"
	"github.com/selimozcann/statuspeek/internal/httpclient"
	"github.com/selimozcann/statuspeek/internal/statuscolor"
	"github.com/selimozcann/statuspeek/internal/trace"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("usage: %s <url>\n", os.Args[0])
		os.Exit(1)
	}

	cfg := config.Default()
	client := httpclient.New(httpclient.Config{Timeout: cfg.HTTP.Timeout})
	tracer := trace.New(httpclient.NewTransport(client, httpclient.MethodHead, nil), trace.Options{
		MaxHops: cfg.Resolver.MaxHops,
		Budget:  cfg.Resolver.Budget,
	}, nil)

	res := tracer.Trace(context.Background(), os.Args[1])
	statuscolor.PrintResult(os.Stdout, res)
	if res.Failed() {
		os.Exit(1)
	}
}
