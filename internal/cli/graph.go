package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/agen8/internal/actions"
	"github.com/shaiso/agen8/internal/domain"
	"github.com/shaiso/agen8/internal/engine"
	"github.com/shaiso/agen8/internal/executor"
	"github.com/shaiso/agen8/internal/telemetry"
)

// readGraphFile читает граф из файла или stdin ("-").
func readGraphFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	return data, nil
}

// loadGraph читает и парсит граф.
func loadGraph(cmd *cobra.Command, path string) (*domain.WorkflowGraph, error) {
	data, err := readGraphFile(cmd, path)
	if err != nil {
		return nil, err
	}
	return engine.ParseGraph(data)
}

// validationView — JSON-представление результата валидации.
type validationView struct {
	Valid  bool                     `json:"valid"`
	Errors []*engine.ValidationError `json:"errors"`
}

// NewValidateCmd создаёт команду validate.
func NewValidateCmd(registryFn func() *actions.Registry, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a workflow graph without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			graph, err := loadGraph(cmd, args[0])
			if err != nil {
				return err
			}

			outcome := engine.Validate(graph, registryFn())
			printValidation(out, outcome)

			if !outcome.Valid {
				return ErrGraphInvalid
			}
			return nil
		},
	}
}

func printValidation(out *Output, outcome *engine.ValidationOutcome) {
	if out.IsJSON() {
		errs := outcome.Errors
		if errs == nil {
			errs = []*engine.ValidationError{}
		}
		out.JSON(validationView{Valid: outcome.Valid, Errors: errs})
		return
	}

	if outcome.Valid {
		out.Success("Graph is valid")
		return
	}

	rows := make([][]string, len(outcome.Errors))
	for i, e := range outcome.Errors {
		rows[i] = []string{dash(e.NodeID), dash(e.Field), e.Message}
	}
	out.Table([]string{"NODE", "FIELD", "ERROR"}, rows)
}

// NewRunCmd создаёт команду run: валидация и выполнение графа локально.
func NewRunCmd(registryFn func() *actions.Registry, outputFn func() *Output) *cobra.Command {
	var concurrency int
	var timeout time.Duration
	var abandon bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Validate and execute a workflow graph locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			graph, err := loadGraph(cmd, args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			exec := executor.New(executor.Config{
				Registry:        registryFn(),
				Concurrency:     concurrency,
				NodeTimeout:     timeout,
				AbandonInFlight: abandon,
				Logger:          telemetry.FromContext(ctx),
			})

			report := exec.Run(ctx, graph)
			printReport(out, report)

			if report.Status == domain.ReportStatusFailed {
				return ErrRunFailed
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum number of nodes running at once")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Default per-node timeout")
	cmd.Flags().BoolVar(&abandon, "abandon", false, "On interrupt, do not wait for running nodes")

	return cmd
}

func printReport(out *Output, report *domain.WorkflowReport) {
	if out.IsJSON() {
		out.JSON(report)
		return
	}

	out.Line("Run %s: %s (%d ms)", report.RunID, strings.ToUpper(string(report.Status)), report.DurationMs)
	out.Line("Trace: %s", strings.Join(report.ExecutionTrace, " -> "))
	out.Line("")

	ids := make([]string, 0, len(report.Results))
	for id := range report.Results {
		ids = append(ids, id)
	}
	// Порядок запуска, затем пропущенные по алфавиту
	position := make(map[string]int, len(report.ExecutionTrace))
	for i, id := range report.ExecutionTrace {
		position[id] = i
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, iok := position[ids[i]]
		pj, jok := position[ids[j]]
		if iok != jok {
			return iok
		}
		if iok {
			return pi < pj
		}
		return ids[i] < ids[j]
	})

	rows := make([][]string, len(ids))
	for i, id := range ids {
		res := report.Results[id]
		detail := res.Error
		if res.Status == domain.NodeStatusSkipped {
			detail = res.Reason
		}
		rows[i] = []string{id, string(res.Status), strconv.Itoa(res.Attempts), strconv.FormatInt(res.DurationMs, 10), dash(detail)}
	}
	out.Table([]string{"NODE", "STATUS", "ATTEMPTS", "DURATION_MS", "DETAIL"}, rows)

	if len(report.Errors) > 0 {
		out.Line("")
		for _, e := range report.Errors {
			out.Line("error: %s %s", dash(e.NodeID), e.Message)
		}
	}
}

// NewActionsCmd создаёт команду actions: список зарегистрированных действий.
func NewActionsCmd(registryFn func() *actions.Registry, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List available actions and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			contracts := registryFn().Contracts()

			rows := make([][]string, len(contracts))
			for i, c := range contracts {
				var required, optional []string
				for _, p := range c.Params {
					if p.Required {
						required = append(required, p.Name)
					} else {
						optional = append(optional, p.Name)
					}
				}
				rows[i] = []string{c.Name, dash(strings.Join(required, ",")), dash(strings.Join(optional, ",")), c.Description}
			}

			out.Print([]string{"ACTION", "REQUIRED", "OPTIONAL", "DESCRIPTION"}, rows, contracts)
			return nil
		},
	}
}

// runContext возвращает контекст команды или Background.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
