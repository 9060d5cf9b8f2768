package actions

import (
	"context"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

type manualStep struct {
	name         string
	target       string
	reason       string
	instructions string
}

var manualSteps = []manualStep{
	{
		name:         "Add to collection",
		target:       "collector",
		reason:       "complex browser interaction, manual action recommended",
		instructions: "Go to any Kaggle notebook/dataset, click the '...' menu, and select 'Add to collection'.",
	},
	{
		name:         "GitHub Coder",
		target:       "github_coder",
		reason:       "requires GitHub linking via UI",
		instructions: "Create a notebook on Kaggle and link a GitHub repository to it via the notebook settings.",
	},
	{
		name:         "Colab Coder",
		target:       "colab_coder",
		reason:       "requires Colab action via UI",
		instructions: "Go to any Kaggle notebook, click the '...' menu, and select 'Open in Google Colab'.",
	},
	{
		name:         "Linked dataset",
		target:       "linked_dataset_creator",
		reason:       "requires URL-linked dataset via UI",
		instructions: "Go to https://www.kaggle.com/datasets/new and create a dataset by providing a URL source instead of uploading files.",
	},
	{
		name:         "Linked model",
		target:       "linked_model_creator",
		reason:       "requires linked model via UI",
		instructions: "Go to https://www.kaggle.com/models/new and create a model linked to an external source (e.g., HuggingFace).",
	},
}

// ManualHandlers returns the phase 4 handlers that only print instructions
// and record their targets as skipped.
func ManualHandlers() []engine.Handler {
	hs := make([]engine.Handler, 0, len(manualSteps))
	for _, s := range manualSteps {
		hs = append(hs, engine.Handler{
			Name:         s.name,
			Phase:        4,
			Targets:      []string{s.target},
			Instructions: s.instructions,
			Run:          s.run,
		})
	}
	return hs
}

func (s manualStep) run(ctx context.Context, req engine.Request) (engine.Outcome, error) {
	req.Logger.Info().Str("badge", s.name).Msg("[MANUAL] " + s.instructions)
	return skip(ctx, req, s.reason)
}
