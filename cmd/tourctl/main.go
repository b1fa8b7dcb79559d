// Command tourctl uploads tour package artifacts to a TourVault server and
// manages renames from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/tourvault/internal/client"
)

const defaultChunkSize = 5 << 20

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	var err error

	switch os.Args[1] {
	case "upload":
		err = runUpload(ctx, os.Args[2:])
	case "direct":
		err = runDirect(ctx, os.Args[2:])
	case "status":
		err = runStatus(ctx, os.Args[2:])
	case "rename":
		err = runRename(ctx, os.Args[2:])
	case "progress":
		err = runProgress(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tourctl <command> [flags]

commands:
  upload    upload a file in chunks through the server
  direct    upload a file straight to object storage via a presigned URL
  status    show an upload session
  rename    rename an ingested artifact
  progress  show progress of a long-running operation

common flags: -server <url> -token <jwt>`)
}

func commonFlags(fs *flag.FlagSet) (server, token *string) {
	server = fs.String("server", "http://127.0.0.1:8080", "server base URL")
	token = fs.String("token", os.Getenv("TOURVAULT_TOKEN"), "API token")
	return server, token
}

func runUpload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	server, token := commonFlags(fs)
	file := fs.String("file", "", "file to upload")
	chunkSize := fs.Int64("chunk-size", defaultChunkSize, "chunk size in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	chunker, err := client.OpenFileChunker(*file, *chunkSize)
	if err != nil {
		return err
	}
	defer chunker.Close()

	c := client.New(*server, *token)

	target, err := c.RequestChunkUpload(ctx, filepath.Base(*file), uint64(chunker.Size()))
	if err != nil {
		return err
	}
	fmt.Printf("session %s, %d chunks\n", target.SessionID, chunker.Count())

	for i := 0; i < chunker.Count(); i++ {
		r, err := chunker.Chunk(i)
		if err != nil {
			return err
		}
		if err := c.StoreChunk(ctx, target.SessionID, i, r); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		fmt.Printf("chunk %d/%d uploaded\n", i+1, chunker.Count())
	}

	session, err := c.FinalizeChunkedUpload(ctx, target.SessionID)
	if err != nil {
		return err
	}
	fmt.Printf("upload %s: %s (%d bytes)\n", session.SessionID, session.Status, session.ActualSize)
	return nil
}

func runDirect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("direct", flag.ExitOnError)
	server, token := commonFlags(fs)
	file := fs.String("file", "", "file to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	c := client.New(*server, *token)

	target, err := c.RequestDirectUpload(ctx, filepath.Base(*file), uint64(fi.Size()))
	if err != nil {
		return err
	}
	fmt.Printf("session %s, uploading to storage...\n", target.SessionID)

	uploadErr := c.PutPresigned(ctx, target, f)

	session, err := c.CompleteDirectUpload(ctx, target.SessionID, uploadErr == nil, errString(uploadErr))
	if err != nil {
		return err
	}
	fmt.Printf("upload %s: %s (%d bytes)\n", session.SessionID, session.Status, session.ActualSize)
	if uploadErr != nil {
		return uploadErr
	}
	return nil
}

func runStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	server, token := commonFlags(fs)
	id := fs.String("id", "", "session id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	session, err := client.New(*server, *token).Status(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("session %s: %s\n  file: %s\n  declared: %d actual: %d\n",
		session.SessionID, session.Status, session.Filename, session.DeclaredSize, session.ActualSize)
	if session.Error != "" {
		fmt.Printf("  error: %s\n", session.Error)
	}
	return nil
}

func runRename(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rename", flag.ExitOnError)
	server, token := commonFlags(fs)
	oldName := fs.String("old", "", "current artifact name")
	newName := fs.String("new", "", "new artifact name")
	force := fs.Bool("force", false, "run inline even over the time budget")
	watch := fs.Bool("watch", false, "poll progress until the operation finishes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *oldName == "" || *newName == "" {
		return fmt.Errorf("-old and -new are required")
	}

	c := client.New(*server, *token)

	res, err := c.Rename(ctx, *oldName, *newName, *force)
	if err != nil {
		return err
	}
	fmt.Printf("rename %s: %s (strategy %s, estimated %.1fs)\n",
		res.OperationID, res.Outcome, res.Strategy, res.EstimatedSeconds)

	if !*watch || res.Outcome == "completed" {
		return nil
	}
	for {
		time.Sleep(2 * time.Second)
		p, err := c.OperationProgress(ctx, res.OperationID)
		if err != nil {
			return err
		}
		fmt.Printf("  %3d%% %s %s\n", p.Percent, p.Status, p.Message)
		if p.Status != "running" {
			return nil
		}
	}
}

func runProgress(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	server, token := commonFlags(fs)
	id := fs.String("id", "", "operation id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	p, err := client.New(*server, *token).OperationProgress(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("operation %s (%s on %s): %s %d%% %s\n",
		p.OperationID, p.Type, p.Target, p.Status, p.Percent, p.Message)
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
