package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// AlertInput is the input for the opportunity alert workflow.
type AlertInput struct {
	OpportunityCode string
}

// AlertResult reports how the fan-out went.
type AlertResult struct {
	Matched int
	Sent    int
}

// OpportunityAlertWorkflow loads a freshly published opportunity, resolves
// the subscribers whose filters match it, and sends each one an alert.
// Individual send failures are retried by the activity policy; a subscriber
// that still fails is skipped so the rest of the fan-out completes.
func OpportunityAlertWorkflow(ctx workflow.Context, input AlertInput) (AlertResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting opportunity alert workflow", "code", input.OpportunityCode)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var result AlertResult

	// Step 1: Load the opportunity. If it was reserved or expired between
	// publish and pickup there is nothing to announce.
	var available bool
	err := workflow.ExecuteActivity(ctx, "CheckOpportunityAvailable", input.OpportunityCode).Get(ctx, &available)
	if err != nil {
		return result, err
	}
	if !available {
		logger.Info("Opportunity no longer available, skipping alerts", "code", input.OpportunityCode)
		return result, nil
	}

	// Step 2: Resolve matching subscribers.
	var emails []string
	err = workflow.ExecuteActivity(ctx, "ResolveAlertRecipients", input.OpportunityCode).Get(ctx, &emails)
	if err != nil {
		return result, err
	}
	result.Matched = len(emails)

	// Step 3: Fan out alerts.
	for _, email := range emails {
		if err := workflow.ExecuteActivity(ctx, "SendOpportunityAlert", email, input.OpportunityCode).Get(ctx, nil); err != nil {
			logger.Warn("alert delivery failed, skipping recipient", "email", email, "error", err)
			continue
		}
		result.Sent++
	}

	logger.Info("Opportunity alerts sent", "code", input.OpportunityCode, "matched", result.Matched, "sent", result.Sent)
	return result, nil
}
