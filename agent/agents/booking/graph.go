package booking

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/tanpawarit/Chative-Concierge/agent/nodes/booking"
)

func (o *Orchestrator) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSession(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_session: %w", err)
	}

	steps := map[string]func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error){
		nodex.NodeStartSession: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.StartSession(in)
		},
		nodex.NodeAwaitDate: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AwaitDate(ctx, in, o.parser, o.scheduler)
		},
		nodex.NodeAwaitTime: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AwaitTime(in, o.parser)
		},
		nodex.NodeAwaitProduct: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AwaitProduct(ctx, in, o.scheduler, o.bookings)
		},
		nodex.NodeAbandonSession: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AbandonSession(in)
		},
	}
	branchEnds := make(map[string]bool, len(nodex.StepNodes))
	for _, name := range nodex.StepNodes {
		if err := graph.AddLambdaNode(name, compose.InvokableLambda(steps[name])); err != nil {
			return nil, fmt.Errorf("add node %s: %w", name, err)
		}
		branchEnds[name] = true
	}

	if err := graph.AddLambdaNode("persist_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PersistSession(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node persist_session: %w", err)
	}

	if err := graph.AddLambdaNode("publish_booking",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PublishBooking(ctx, in, o.hooks)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node publish_booking: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in, o.replies)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	if err := graph.AddBranch("load_session", compose.NewGraphBranch(nodex.Route, branchEnds)); err != nil {
		return nil, fmt.Errorf("add branch load_session: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_session"},
	}
	for _, name := range nodex.StepNodes {
		edges = append(edges, [2]string{name, "persist_session"})
	}
	edges = append(edges,
		[2]string{"persist_session", "publish_booking"},
		[2]string{"publish_booking", "finalize_reply"},
		[2]string{"finalize_reply", compose.END},
	)

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("booking.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile booking graph: %w", err)
	}
	return runner, nil
}
