package main

// Notifier blank imports — each import registers a webhook notifier.

import (
	_ "github.com/Strob0t/ActionForge/internal/adapter/discord"
	_ "github.com/Strob0t/ActionForge/internal/adapter/slack"
)
