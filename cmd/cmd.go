// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlag(value string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: txt, csv, md or json",
		Value:   value,
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a configuration file from the bundled template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   configPath,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "Show applied and pending migrations",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// searchCommand queries the search API
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "search",
		Aliases: []string{"s"},
		Usage:   "Search for tracks to convert",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			formatFlag("txt"),
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the query in search history",
			},
		},
		Action: r.Search,
	}
}

// previewCommand searches the music catalogue for 30-second preview clips
func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "preview",
		Aliases: []string{"pv"},
		Usage:   "Search the music catalogue and play 30-second previews",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			formatFlag("txt"),
			&cli.IntFlag{
				Name:  "play",
				Usage: "Play the preview at this result number",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the query in search history",
			},
		},
		Action: r.Preview,
	}
}

// historyCommand lists or clears recent searches
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent searches",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of searches to show",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Forget every recorded search",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

// libraryCommand handles saved audio
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Saved audio operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved audio, most recent first",
				Flags: []cli.Flag{
					formatFlag("txt"),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of items to show (0 for all)",
					},
					&cli.BoolFlag{
						Name:  "cached",
						Usage: "Read from the local cache instead of the backend",
					},
				},
				Action: r.LibraryList,
			},
			{
				Name:  "show",
				Usage: "Show a single saved item",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.LibraryShow,
			},
			{
				Name:   "refresh",
				Usage:  "Fetch the library from the backend and update the local cache",
				Action: r.LibraryRefresh,
			},
			{
				Name:  "watch",
				Usage: "Follow live library updates until interrupted",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "resync",
						Usage: "Full refresh interval (0 disables, default from config)",
					},
				},
				Action: r.LibraryWatch,
			},
			{
				Name:  "export",
				Usage: "Export the library to a file",
				Flags: []cli.Flag{
					formatFlag("json"),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
				},
				Action: r.LibraryExport,
			},
		},
	}
}

// convertCommand converts a video URL to saved audio
func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Convert a video URL to audio on the backend",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "title",
				Usage: "Track title sent with the request",
			},
			&cli.StringFlag{
				Name:  "artist",
				Usage: "Track artist sent with the request",
			},
		},
		Action: r.Convert,
	}
}

// playCommand plays a saved item or a video URL
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play a saved item id or a video URL until it ends",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "target",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "title",
				Usage: "Title shown while converting a URL",
			},
		},
		Action: r.Play,
	}
}

// downloadCommand stores saved audio on disk
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download saved audio files",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Only download these item ids (repeatable)",
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Output directory (default from config)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent downloads (default from config)",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Downloads started per second (default from config)",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Replace files that already exist",
			},
			&cli.BoolFlag{
				Name:  "thumbnails",
				Usage: "Save cover images next to the audio",
			},
		},
		Action: r.Download,
	}
}

// apiCommand handles direct backend API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls to the conversion backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the backend, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "delete",
				Usage: "Direct DELETE to the backend",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Action: r.APIDelete,
			},
		},
	}
}

// tuiCommand launches the interactive interface
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch the interactive terminal UI",
		Action: r.TUI,
	}
}
