package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/franz/enginelib"
	"github.com/franz/enginelib/internal/util"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Import audio files from a directory into the library",
	Long: `Walk a directory tree, read the tags of every audio file found, and
add them to the library as tracks. Files whose relative path is already
referenced by a track are skipped.

All imported tracks are written in a single transaction; an import that
fails partway leaves the library unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

// audioExtensions are the file types the hardware can play.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".flac": true,
	".ogg":  true,
	".wav":  true,
	".aif":  true,
	".aiff": true,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("crate", "", "add imported tracks to a crate with this name, creating it if needed")
}

func runImport(cmd *cobra.Command, args []string) error {
	db, err := openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	source := args[0]
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return fmt.Errorf("source directory does not exist: %s", source)
	}

	files, err := findAudioFiles(source)
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", source, err)
	}
	if len(files) == 0 {
		util.WarnLog("No audio files found under %s", source)
		return nil
	}
	util.InfoLog("Found %d audio files under %s", len(files), source)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var crate *enginelib.Crate
	if crateName, _ := cmd.Flags().GetString("crate"); crateName != "" {
		crate, err = findOrCreateCrate(db, crateName)
		if err != nil {
			return err
		}
	}

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Importing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	imported, skipped, failed := 0, 0, 0
	start := time.Now()

	for _, file := range files {
		if bar != nil {
			bar.Add(1)
		}

		relPath, err := filepath.Rel(source, file)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", file, err)
		}
		relPath = filepath.ToSlash(relPath)

		existing, err := db.TracksByRelativePath(relPath)
		if err != nil {
			return fmt.Errorf("failed to check for existing track: %w", err)
		}
		if len(existing) > 0 {
			util.DebugLog("Skipping %s: already in library", relPath)
			skipped++
			continue
		}

		track, err := db.CreateTrack(relPath)
		if err != nil {
			return fmt.Errorf("failed to create track for %s: %w", relPath, err)
		}
		if err := applyFileTags(track, file); err != nil {
			util.DebugLog("No usable tags in %s: %v", relPath, err)
			failed++
		}
		if err := track.Save(); err != nil {
			return fmt.Errorf("failed to save track for %s: %w", relPath, err)
		}
		if crate != nil {
			if err := crate.AddTrack(track.ID()); err != nil {
				return fmt.Errorf("failed to add %s to crate: %w", relPath, err)
			}
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	util.SuccessLog("Import complete in %v", time.Since(start).Round(time.Millisecond))
	util.InfoLog("  Imported: %d", imported)
	if skipped > 0 {
		util.InfoLog("  Skipped (already present): %d", skipped)
	}
	if failed > 0 {
		util.WarnLog("  Imported without tags: %d", failed)
	}
	return nil
}

func findAudioFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// applyFileTags reads the file's embedded tags into the track's metadata
// fields. The track is still usable when the file carries no tags.
func applyFileTags(track *enginelib.Track, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return fmt.Errorf("failed to read tags: %w", err)
	}

	track.SetTitle(m.Title())
	track.SetArtist(m.Artist())
	track.SetAlbum(m.Album())
	track.SetGenre(m.Genre())
	track.SetComposer(m.Composer())
	track.SetComment(m.Comment())
	if m.Year() > 0 {
		track.SetYear(m.Year())
	}
	return nil
}

func findOrCreateCrate(db *enginelib.Database, name string) (*enginelib.Crate, error) {
	crates, err := db.CratesByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up crate %q: %w", name, err)
	}
	if len(crates) > 0 {
		return crates[0], nil
	}
	crate, err := db.CreateCrate(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create crate %q: %w", name, err)
	}
	util.InfoLog("Created crate %q", name)
	return crate, nil
}
