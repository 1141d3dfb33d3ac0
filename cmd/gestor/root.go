package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ogurasousui/basex-empresa/internal/adapters/grpc/handler"
	"github.com/ogurasousui/basex-empresa/internal/app"
	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"github.com/ogurasousui/basex-empresa/internal/platform/config"
	"github.com/ogurasousui/basex-empresa/internal/platform/logger"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// opener は UseCase と、その解放関数を返します。
type opener func(ctx context.Context, c *cli) (org.UseCase, func() error, error)

type cli struct {
	configPath string
	addr       string
	jsonOutput bool

	open    opener
	uc      org.UseCase
	closeFn func() error
	root    *cobra.Command
}

func newCLI(open opener) *cli {
	if open == nil {
		open = openUseCase
	}
	c := &cli{open: open}
	c.root = newRootCmd(c)
	return c
}

// execute はコマンドを実行します。コマンドが失敗してもストア接続は必ず解放されます。
func (c *cli) execute() (err error) {
	defer func() {
		if cerr := c.close(); cerr != nil && err == nil {
			err = fmt.Errorf("release store: %w", cerr)
		}
	}()
	return c.root.Execute()
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "gestor",
		Short: "gestor manages departments and employees kept in a BaseX store",
		Long: `gestor reads and modifies departments and employees stored in a BaseX
document database. By default it connects to the store directly using the
config file; with --addr it goes through a running gestor gRPC server.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.connect,
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: CONFIG_PATH env or assets/local.yaml)")
	root.PersistentFlags().StringVar(&c.addr, "addr", "", "address of a gestor gRPC server; empty connects to the store directly")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newDepartmentCmd(c),
		newEmployeeCmd(c),
		newManagerCmd(c),
		newJournalCmd(c),
	)
	return root
}

func (c *cli) connect(cmd *cobra.Command, _ []string) error {
	if skipsConnection(cmd) {
		return nil
	}
	uc, closeFn, err := c.open(cmd.Context(), c)
	if err != nil {
		return err
	}
	c.uc = uc
	c.closeFn = closeFn
	return nil
}

// skipsConnection はストア接続が不要なコマンドかを返します。
func skipsConnection(cmd *cobra.Command) bool {
	for p := cmd; p != nil; p = p.Parent() {
		if p.Name() == "help" || p.Name() == "completion" {
			return true
		}
	}
	return false
}

func (c *cli) close() error {
	if c.closeFn == nil {
		return nil
	}
	err := c.closeFn()
	c.closeFn = nil
	return err
}

func (c *cli) effectiveConfigPath() string {
	if c.configPath != "" {
		return c.configPath
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func openUseCase(ctx context.Context, c *cli) (org.UseCase, func() error, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if c.addr != "" {
		conn, err := grpc.NewClient(c.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", c.addr, err)
		}
		return handler.NewEmpresaClient(conn), conn.Close, nil
	}

	cfg, err := config.Load(c.effectiveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.Open(ctx, cfg, logger.New(os.Stderr, cfg.Log))
	if err != nil {
		return nil, nil, err
	}
	return a.Service, a.Close, nil
}

func (c *cli) print(w io.Writer, v any, text func(io.Writer) error) error {
	if c.jsonOutput {
		return writeJSON(w, v)
	}
	return text(w)
}

var errNoUseCase = errors.New("gestor: not connected")

func (c *cli) useCase() (org.UseCase, error) {
	if c.uc == nil {
		return nil, errNoUseCase
	}
	return c.uc, nil
}
