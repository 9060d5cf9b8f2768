package catalog

import "sync"

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in Kaggle badge catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = MustNew(kaggleBadges)
	})
	return defaultCatalog
}

func auto(id, name string, category Category, phase int, description string) Achievement {
	return Achievement{ID: id, Name: name, Category: category, Phase: phase, Description: description, Automatable: true}
}

func manual(id, name string, category Category, description string) Achievement {
	return Achievement{ID: id, Name: name, Category: category, Description: description}
}

var kaggleBadges = []Achievement{
	// Phase 1: instant API badges.
	auto("python_coder", "Python Coder", CategoryNotebooks, 1, "Push a Python notebook via API"),
	auto("r_coder", "R Coder", CategoryNotebooks, 1, "Push an R notebook via API"),
	auto("api_notebook_creator", "API Notebook Creator", CategoryNotebooks, 1, "Create a notebook using the Kaggle API"),
	auto("utility_scripter", "Utility Scripter", CategoryNotebooks, 1, "Push a utility script (not a notebook) via API"),
	auto("code_uploader", "Code Uploader", CategoryNotebooks, 1, "Upload code to Kaggle"),
	auto("code_forker", "Code Forker", CategoryNotebooks, 1, "Fork an existing public notebook"),
	auto("code_tagger", "Code Tagger", CategoryNotebooks, 1, "Add tags to a notebook"),
	auto("dataset_creator", "Dataset Creator", CategoryDatasets, 1, "Create a new dataset"),
	auto("api_dataset_creator", "API Dataset Creator", CategoryDatasets, 1, "Create a dataset using the Kaggle API"),
	auto("dataset_tagger", "Dataset Tagger", CategoryDatasets, 1, "Add tags to a dataset"),
	auto("dataset_documenter", "Dataset Documenter", CategoryDatasets, 1, "Achieve usability score 10/10 on a dataset"),
	auto("model_creator", "Model Creator", CategoryModels, 1, "Create a new model"),
	auto("api_model_creator", "API Model Creator", CategoryModels, 1, "Create a model using the Kaggle API"),
	auto("model_variation_creator", "Model Variation Creator", CategoryModels, 1, "Create a model variation/instance"),
	auto("model_tagger", "Model Tagger", CategoryModels, 1, "Add tags to a model"),
	auto("model_documenter", "Model Documenter", CategoryModels, 1, "Achieve usability score 10/10 on a model"),

	// Phase 2: competitions.
	auto("competitor", "Competitor", CategoryCompetitions, 2, "Submit to any competition"),
	auto("getting_started_competitor", "Getting Started Competitor", CategoryCompetitions, 2, "Submit to a Getting Started competition"),
	auto("playground_competitor", "Playground Competitor", CategoryCompetitions, 2, "Submit to a Playground competition"),
	auto("community_competitor", "Community Competitor", CategoryCompetitions, 2, "Submit to a Community competition"),
	auto("code_submitter", "Code Submitter", CategoryCompetitions, 2, "Make a code-based submission to a competition"),
	auto("notebook_modeler", "Notebook Modeler", CategoryCompetitions, 2, "Create a notebook that generates a competition submission"),
	auto("competition_modeler", "Competition Modeler", CategoryCompetitions, 2, "Use a model in a competition notebook"),

	// Phase 3: pipelines.
	auto("dataset_pipeline_creator", "Dataset Pipeline Creator", CategoryDatasets, 3, "Create a dataset from notebook output"),
	auto("model_pipeline_creator", "Model Pipeline Creator", CategoryModels, 3, "Create a model from notebook output"),
	auto("r_markdown_coder", "R Markdown Coder", CategoryNotebooks, 3, "Push and execute an R Markdown notebook on KKB"),

	// Phase 4: browser.
	auto("stylish", "Stylish", CategoryAccount, 4, "Fill out your Kaggle profile (bio, location, etc.)"),
	auto("vampire", "Vampire", CategoryAccount, 4, "Switch to dark theme"),
	auto("bookmarker", "Bookmarker", CategoryCommunity, 4, "Bookmark a notebook, dataset, or competition"),
	auto("collector", "Collector", CategoryCommunity, 4, "Add an item to a collection"),
	auto("github_coder", "GitHub Coder", CategoryNotebooks, 4, "Link a GitHub repo to a notebook"),
	auto("colab_coder", "Colab Coder", CategoryNotebooks, 4, "Open a Kaggle notebook in Google Colab"),
	auto("linked_dataset_creator", "Linked Dataset Creator", CategoryDatasets, 4, "Create a dataset linked to a URL source"),
	auto("linked_model_creator", "Linked Model Creator", CategoryModels, 4, "Create a model linked to an external source"),

	// Phase 5: streaks.
	auto("seven_day_login_streak", "7-Day Login Streak", CategoryAccount, 5, "Log in for 7 consecutive days"),
	auto("thirty_day_login_streak", "30-Day Login Streak", CategoryAccount, 5, "Log in for 30 consecutive days"),
	auto("submission_streak", "Submission Streak", CategoryCompetitions, 5, "Submit to competitions for 7 consecutive days"),
	auto("super_submission_streak", "Super Submission Streak", CategoryCompetitions, 5, "Submit to competitions for 30 consecutive days"),

	// Not automatable.
	manual("contributor", "Contributor", CategoryCommunity, "Reach Contributor progression tier"),
	manual("expert", "Expert", CategoryCommunity, "Reach Expert progression tier"),
	manual("master", "Master", CategoryCommunity, "Reach Master progression tier"),
	manual("grandmaster", "Grandmaster", CategoryCommunity, "Reach Grandmaster progression tier"),
	manual("discussion_starter", "Discussion Starter", CategoryCommunity, "Start a discussion that gets upvoted"),
	manual("commentator", "Commentator", CategoryCommunity, "Post a comment that gets upvoted"),
	manual("voter", "Voter", CategoryCommunity, "Upvote content on Kaggle"),
	manual("sharer", "Sharer", CategoryCommunity, "Share a notebook or dataset externally"),
	manual("course_completer", "Course Completer", CategoryCommunity, "Complete a Kaggle Learn course"),
	manual("certificate_earner", "Certificate Earner", CategoryCommunity, "Earn a Kaggle Learn certificate"),
	manual("competition_medal", "Competition Medal", CategoryCompetitions, "Earn a medal in a competition"),
	manual("dataset_medal", "Dataset Medal", CategoryDatasets, "Earn a medal on a dataset"),
	manual("notebook_medal", "Notebook Medal", CategoryNotebooks, "Earn a medal on a notebook"),
	manual("team_player", "Team Player", CategoryCompetitions, "Join a competition team"),
	manual("competition_host", "Competition Host", CategoryCompetitions, "Host a competition"),
	manual("simulations_competitor", "Simulations Competitor", CategoryCompetitions, "Submit to a Simulations competition"),
	manual("featured_competitor", "Featured Competitor", CategoryCompetitions, "Submit to a Featured competition"),
}
