// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// playlistFlags are shared by generate and tui.
func playlistFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "id",
			Usage: "Playlist id, used as the output directory name (default: random UUID)",
		},
		&cli.StringSliceFlag{
			Name:    "url",
			Aliases: []string{"u"},
			Usage:   "Media file URL, repeat in playlist order",
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Playlist record (JSON or YAML); the result is written back into it",
		},
		&cli.StringFlag{
			Name:  "base-dir",
			Usage: "Parent directory of playlist directories (default: downloader.base_dir)",
		},
	}
}

// generateCommand downloads and assembles one playlist.
func generateCommand(r *Runner) *cli.Command {
	flags := append(playlistFlags(),
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output the result as JSON",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Follow the generation in the interactive TUI",
		},
		&cli.BoolFlag{
			Name:  "publish",
			Usage: "Upload the media file to publish.bucket_url",
		},
		&cli.BoolFlag{
			Name:  "open",
			Usage: "Open the media file with the default application",
		},
	)

	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Download a playlist's media files and merge them into one",
		Flags:   flags,
		Action:  r.Generate,
	}
}

// batchCommand runs a manifest of playlists.
func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Generate every playlist in a JSON or YAML manifest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest",
				Aliases:  []string{"m"},
				Usage:    "Manifest file listing playlists (requests: [{id, urls}])",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "base-dir",
				Usage: "Parent directory of playlist directories (default: downloader.base_dir)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory to write batch_manifest.json to",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Summary format: text, json, markdown or csv",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Upload successful media files to publish.bucket_url",
			},
		},
		Action: r.Batch,
	}
}

// serveCommand starts the HTTP control surface.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation API over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (default: server.port)",
			},
		},
		Action: r.Serve,
	}
}

// historyCommand inspects recorded generations.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded generations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded generations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Only generations of this playlist id",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only generations with this status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of generations to show",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show the latest generation of a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	configFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   r.configPath,
		}
	}

	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write an example configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "check",
				Usage:  "Validate a configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupCheck,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for an interactive generation.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Generate a playlist in the interactive TUI",
		Flags:   playlistFlags(),
		Action:  r.TUI,
	}
}
