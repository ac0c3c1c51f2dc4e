package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/agen8/internal/actions"
	"github.com/shaiso/agen8/internal/engine"
	"github.com/shaiso/agen8/internal/mq"
	"github.com/shaiso/agen8/internal/telemetry"
)

// submission — результат отправки графа.
type submission struct {
	SubmissionID string `json:"submission_id"`
	Workflow     string `json:"workflow,omitempty"`
	Queue        string `json:"queue"`
}

// NewSubmitCmd создаёт команду submit: отправка графа в очередь runner.
//
// Граф валидируется локально до публикации, чтобы невалидные графы
// не занимали runner.
func NewSubmitCmd(registryFn func() *actions.Registry, amqpURLFn func() string, outputFn func() *Output) *cobra.Command {
	var skipValidation bool

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Submit a workflow graph to the runner queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			data, err := readGraphFile(cmd, args[0])
			if err != nil {
				return err
			}

			graph, err := engine.ParseGraph(data)
			if err != nil {
				return err
			}

			if !skipValidation {
				outcome := engine.Validate(graph, registryFn())
				if !outcome.Valid {
					printValidation(out, outcome)
					return ErrGraphInvalid
				}
			}

			ctx := runContext(cmd)
			logger := telemetry.FromContext(ctx)

			conn, err := mq.NewConnection(amqpURLFn(), logger)
			if err != nil {
				return fmt.Errorf("connect to RabbitMQ: %w", err)
			}
			defer conn.Close()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return fmt.Errorf("setup topology: %w", err)
			}

			id, err := mq.NewPublisher(conn, logger).PublishWorkflowSubmitted(ctx, json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow submitted: %s", id))
			out.Print(
				[]string{"SUBMISSION_ID", "WORKFLOW", "QUEUE"},
				[][]string{{id.String(), dash(graph.Name), string(mq.QueueWorkflowsSubmitted)}},
				submission{SubmissionID: id.String(), Workflow: graph.Name, Queue: string(mq.QueueWorkflowsSubmitted)},
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "Publish without local validation")

	return cmd
}
