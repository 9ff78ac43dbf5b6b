package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/rzbill/rocketspeed/internal/config"
	"github.com/rzbill/rocketspeed/internal/runtime"
	grpcserver "github.com/rzbill/rocketspeed/internal/server/grpc"
	httpserver "github.com/rzbill/rocketspeed/internal/server/http"
	pebblestore "github.com/rzbill/rocketspeed/internal/storage/pebble"
	logpkg "github.com/rzbill/rocketspeed/pkg/log"
)

func main() {
	level, err := logpkg.ParseLevel(os.Getenv("ROCKETSPEED_LOG_LEVEL"))
	if err != nil {
		level = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "rocketeer",
		Short: "RocketSpeed server and client CLI",
		Long:  "rocketeer runs a single-node RocketSpeed server and offers basic publish/subscribe/admin operations against it.",
	}

	rootCmd.AddCommand(newServerCommand(logger))
	rootCmd.AddCommand(newNamespaceCommand())
	rootCmd.AddCommand(newTopicCommand())
	rootCmd.AddCommand(newAdminCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServerCommand(logger logpkg.Logger) *cobra.Command {
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	startCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the RocketSpeed server (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			httpAddr, _ := cmd.Flags().GetString("http")
			configPath, _ := cmd.Flags().GetString("config")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			shards, _ := cmd.Flags().GetUint32("shards")

			mode := pebblestore.FsyncModeAlways
			switch fsyncMode {
			case "always":
				mode = pebblestore.FsyncModeAlways
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "never":
				mode = pebblestore.FsyncModeNever
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}
			if dataDir == "" {
				dataDir = cfgpkg.DefaultDataDir()
			}

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			rt, err := runtime.Open(runtime.Options{
				DataDir:   dataDir,
				Fsync:     mode,
				Config:    cfg,
				Logger:    logger,
				NumShards: shards,
			})
			if err != nil {
				return fmt.Errorf("open runtime: %w", err)
			}
			defer rt.Close()

			hs := httpserver.New(rt)
			gs := grpcserver.New(rt)
			sctx, stop := context.WithCancel(ctx)
			errCh := make(chan error, 2)
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				if err := hs.ListenAndServe(sctx, httpAddr); err != nil && sctx.Err() == nil {
					errCh <- fmt.Errorf("http server: %w", err)
				}
			}()
			go func() {
				defer wg.Done()
				if err := gs.ListenAndServe(sctx, grpcAddr); err != nil && sctx.Err() == nil {
					errCh <- fmt.Errorf("grpc server: %w", err)
				}
			}()
			select {
			case <-sctx.Done():
				err = nil
			case err = <-errCh:
			}
			stop()
			hs.Close()
			gs.Close()
			wg.Wait()
			// brief delay to let logs flush
			time.Sleep(100 * time.Millisecond)
			return err
		},
	}
	startCmd.Flags().String("data-dir", "", "Data directory (defaults to the OS-specific application data directory)")
	startCmd.Flags().String("grpc", ":50051", "gRPC listen address")
	startCmd.Flags().String("http", ":8080", "HTTP listen address")
	startCmd.Flags().String("config", "", "Path to a JSON config file (optional)")
	startCmd.Flags().String("fsync", "always", "Fsync mode: always|interval|never")
	startCmd.Flags().Uint32("shards", 1, "Number of control-room shards")
	serverCmd.AddCommand(startCmd)
	return serverCmd
}

func newNamespaceCommand() *cobra.Command {
	nsCmd := &cobra.Command{Use: "namespace", Short: "Namespace operations"}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			body, _ := json.Marshal(map[string]string{"namespace": name})
			resp, err := http.Post(apiURL()+"/v1/ns/create", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			fmt.Println("status:", resp.Status)
			return nil
		},
	}
	createCmd.Flags().String("name", "default", "Namespace name")
	nsCmd.AddCommand(createCmd)
	return nsCmd
}

func newTopicCommand() *cobra.Command {
	topicCmd := &cobra.Command{Use: "topic", Short: "Topic operations"}

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one record to a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			topic, _ := cmd.Flags().GetString("topic")
			payload, _ := cmd.Flags().GetString("payload")
			body, _ := json.Marshal(map[string]interface{}{
				"namespace": ns, "topic": topic, "payload": []byte(payload),
			})
			resp, err := http.Post(apiURL()+"/v1/topics/publish", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			out, _ := io.ReadAll(resp.Body)
			fmt.Print(string(out))
			return nil
		},
	}
	publishCmd.Flags().String("namespace", "default", "Namespace")
	publishCmd.Flags().String("topic", "", "Topic name")
	publishCmd.Flags().String("payload", "", "Record payload")
	_ = publishCmd.MarkFlagRequired("topic")
	topicCmd.AddCommand(publishCmd)

	subscribeCmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Stream records from a topic until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			topic, _ := cmd.Flags().GetString("topic")
			host, _ := cmd.Flags().GetString("host")
			seqno, _ := cmd.Flags().GetUint64("seqno")

			q := url.Values{}
			q.Set("namespace", ns)
			q.Set("topic", topic)
			q.Set("host", host)
			q.Set("seqno", fmt.Sprintf("%d", seqno))
			resp, err := http.Get(apiURL() + "/v1/topics/subscribe?" + q.Encode())
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				fmt.Println(scanner.Text())
			}
			return scanner.Err()
		},
	}
	subscribeCmd.Flags().String("namespace", "default", "Namespace")
	subscribeCmd.Flags().String("topic", "", "Topic name")
	subscribeCmd.Flags().String("host", "cli", "Subscriber host identity")
	subscribeCmd.Flags().Uint64("seqno", 0, "Start seqno (0 means from the tail)")
	_ = subscribeCmd.MarkFlagRequired("topic")
	topicCmd.AddCommand(subscribeCmd)

	return topicCmd
}

func newAdminCommand() *cobra.Command {
	adminCmd := &cobra.Command{Use: "admin", Short: "Control-plane operations over gRPC"}

	withAdmin := func(fn func(ctx context.Context, c *grpcserver.AdminClient) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetString("target")
			client, err := grpcserver.Dial(target)
			if err != nil {
				return err
			}
			defer client.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return fn(ctx, client)
		}
	}
	printJSON := func(v interface{}) error {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: withAdmin(func(ctx context.Context, c *grpcserver.AdminClient) error {
			resp, err := c.Health(ctx)
			if err != nil {
				return err
			}
			return printJSON(resp)
		}),
	}
	namespacesCmd := &cobra.Command{
		Use:   "namespaces",
		Short: "List namespaces",
		RunE: withAdmin(func(ctx context.Context, c *grpcserver.AdminClient) error {
			resp, err := c.Namespaces(ctx)
			if err != nil {
				return err
			}
			return printJSON(resp)
		}),
	}
	topologyCmd := &cobra.Command{
		Use:   "topology",
		Short: "Show shard topology",
		RunE: withAdmin(func(ctx context.Context, c *grpcserver.AdminClient) error {
			resp, err := c.Topology(ctx)
			if err != nil {
				return err
			}
			return printJSON(resp)
		}),
	}
	backlogCmd := &cobra.Command{
		Use:   "backlog",
		Short: "Query whether a topic has backlog in a seqno range",
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			topic, _ := cmd.Flags().GetString("topic")
			prev, _ := cmd.Flags().GetUint64("prev")
			next, _ := cmd.Flags().GetUint64("next")
			return withAdmin(func(ctx context.Context, c *grpcserver.AdminClient) error {
				resp, err := c.Backlog(ctx, &grpcserver.BacklogRequest{
					Namespace: ns, Topic: topic, PrevSeqno: prev, NextSeqno: next,
				})
				if err != nil {
					return err
				}
				return printJSON(resp)
			})(cmd, args)
		},
	}
	backlogCmd.Flags().String("namespace", "default", "Namespace")
	backlogCmd.Flags().String("topic", "", "Topic name")
	backlogCmd.Flags().Uint64("prev", 0, "Previous seqno (exclusive)")
	backlogCmd.Flags().Uint64("next", 1, "Next seqno (inclusive)")
	_ = backlogCmd.MarkFlagRequired("topic")

	for _, c := range []*cobra.Command{healthCmd, namespacesCmd, topologyCmd, backlogCmd} {
		c.Flags().String("target", "127.0.0.1:50051", "gRPC server address")
		adminCmd.AddCommand(c)
	}
	return adminCmd
}

func apiURL() string {
	if v := os.Getenv("ROCKETSPEED_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
