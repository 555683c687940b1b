package cqrs_test

import (
	"context"
	"fmt"

	"ops-agent/pkg/cqrs"
)

type RestartServiceCommand struct {
	Service string
}

func (c RestartServiceCommand) Name() string {
	return "RestartService"
}

type RestartServiceHandler struct{}

func (h *RestartServiceHandler) Handle(_ context.Context, cmd RestartServiceCommand) error {
	fmt.Printf("Restarting %s\n", cmd.Service)
	return nil
}

type GetServiceQuery struct {
	Service string
}

func (q GetServiceQuery) Name() string {
	return "GetService"
}

type GetServiceHandler struct{}

func (h *GetServiceHandler) Handle(_ context.Context, q GetServiceQuery) (string, error) {
	return q.Service + " is active", nil
}

func Example_commandBus() {
	commandBus := cqrs.NewCommandBus(context.Background())
	if err := commandBus.Register(&RestartServiceHandler{}); err != nil {
		fmt.Printf("Error registering handler: %v\n", err)
		return
	}

	if err := commandBus.Dispatch(context.Background(), RestartServiceCommand{Service: "patch-system"}); err != nil {
		fmt.Printf("Error dispatching command: %v\n", err)
		return
	}

	// Output:
	// Restarting patch-system
}

func Example_queryBus() {
	queryBus := cqrs.NewQueryBus()
	if err := queryBus.Register(&GetServiceHandler{}); err != nil {
		fmt.Printf("Error registering handler: %v\n", err)
		return
	}

	result, err := queryBus.Dispatch(context.Background(), GetServiceQuery{Service: "patch-system"})
	if err != nil {
		fmt.Printf("Error dispatching query: %v\n", err)
		return
	}
	fmt.Println(result.(string))

	// Output:
	// patch-system is active
}
