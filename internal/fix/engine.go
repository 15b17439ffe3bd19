// Package fix previews and applies config_replace remediations with
// backup and rollback guarantees.
package fix

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ovidijusr/shieldai/internal/domain/finding"
	"github.com/ovidijusr/shieldai/internal/pkg/errors"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
	"github.com/ovidijusr/shieldai/internal/pkg/metrics"
)

// Lifecycle restarts and inspects containers by name.
type Lifecycle interface {
	RestartOrStart(ctx context.Context, name string) error
	IsRunning(ctx context.Context, name string) (bool, error)
}

// Synthesizer generates replacement-equivalent configuration content from a
// container's live configuration. It is consulted only when the target file
// is missing.
type Synthesizer interface {
	Synthesize(ctx context.Context, containerName string) (string, error)
}

// Engine applies configuration remediations. Each call reads and writes one
// target path with no engine-level locking: concurrent applies against the
// same path race (last writer wins; backups stay individually safe).
type Engine struct {
	lifecycle Lifecycle
	synth     Synthesizer
	// backupDir receives backups; empty means alongside the target file.
	backupDir string
	// restartWait bounds the single post-restart verification poll.
	restartWait time.Duration
	log         *logger.Logger
}

// NewEngine creates a fix engine.
func NewEngine(lifecycle Lifecycle, synth Synthesizer, backupDir string, restartWait time.Duration, log *logger.Logger) *Engine {
	if restartWait <= 0 {
		restartWait = 3 * time.Second
	}
	return &Engine{
		lifecycle:   lifecycle,
		synth:       synth,
		backupDir:   backupDir,
		restartWait: restartWait,
		log:         log,
	}
}

// validate checks that the finding carries an auto-applicable fix. Only
// config_replace is applied end to end; the other declared kinds and any
// undeclared kind fail loudly here.
func validate(f *finding.Finding) error {
	if f == nil || f.Fix == nil {
		return errors.ValidationError("finding carries no fix payload", nil)
	}
	if !f.Fix.Kind.Valid() {
		return errors.ValidationError(fmt.Sprintf("unknown fix kind %q", f.Fix.Kind), nil)
	}
	if f.Fix.Kind != finding.FixKindConfigReplace {
		return errors.ValidationError(fmt.Sprintf("fix kind %q cannot be applied automatically", f.Fix.Kind), nil)
	}
	if f.Fix.TargetPath == "" {
		return errors.ValidationError("fix has no resolved target path", nil)
	}
	if f.Fix.Content == "" {
		return errors.ValidationError("fix has no replacement content", nil)
	}
	return nil
}

// currentContent reads the target file. When the file is missing and the
// finding names a container, content is synthesized from the live container
// and persisted to the target path before continuing, so subsequent reads
// see a consistent file.
func (e *Engine) currentContent(ctx context.Context, f *finding.Finding) (string, error) {
	path := f.Fix.TargetPath

	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", errors.IOError(fmt.Sprintf("failed to read %s", path), err)
	}

	if f.Container == "" {
		return "", errors.NotFound(fmt.Sprintf("target file %s", path))
	}

	e.log.WithFields(map[string]interface{}{
		"path":      path,
		"container": f.Container,
	}).Info("Target file missing, synthesizing from live container")

	content, err := e.synth.Synthesize(ctx, f.Container)
	if err != nil {
		return "", errors.Internal(fmt.Sprintf("failed to synthesize content for %s", f.Container), err)
	}
	if err := writeFileAtomic(path, content); err != nil {
		return "", errors.IOError(fmt.Sprintf("failed to persist synthesized content to %s", path), err)
	}
	return content, nil
}

// Preview computes the diff and side effects of applying a fix, without
// mutating the target (beyond persisting synthesized content when the
// target file was missing).
func (e *Engine) Preview(ctx context.Context, f *finding.Finding) (*finding.DiffPreview, error) {
	if err := validate(f); err != nil {
		return nil, err
	}

	original, err := e.currentContent(ctx, f)
	if err != nil {
		return nil, err
	}
	proposed := f.Fix.Content

	return &finding.DiffPreview{
		TargetPath:  f.Fix.TargetPath,
		Original:    original,
		Proposed:    proposed,
		Lines:       computeDiff(f.Fix.TargetPath, original, proposed),
		SideEffects: e.sideEffects(f, original, proposed),
	}, nil
}

// Apply writes the replacement content with a backup of the pre-fix content
// taken first, optionally restarts the named container, and verifies it
// came back. A failed verification restores the in-memory pre-fix content
// to the target path and surfaces a RestartError; the backup stays on disk
// for manual recovery.
func (e *Engine) Apply(ctx context.Context, f *finding.Finding) (*finding.FixResult, error) {
	if err := validate(f); err != nil {
		metrics.RecordFix("validation_error")
		return &finding.FixResult{Success: false, Error: err.Error()}, err
	}

	original, err := e.currentContent(ctx, f)
	if err != nil {
		metrics.RecordFix("read_error")
		return &finding.FixResult{Success: false, Error: err.Error()}, err
	}

	// Backup before any mutation of the live file. Failure here aborts.
	backupPath, err := e.writeBackup(f, original)
	if err != nil {
		metrics.RecordFix("backup_error")
		return &finding.FixResult{Success: false, Error: err.Error()}, err
	}

	if err := writeFileAtomic(f.Fix.TargetPath, f.Fix.Content); err != nil {
		ioErr := errors.IOError(fmt.Sprintf("failed to write %s", f.Fix.TargetPath), err)
		metrics.RecordFix("write_error")
		return &finding.FixResult{Success: false, BackupPath: backupPath, Error: ioErr.Error()}, ioErr
	}

	result := &finding.FixResult{Success: true, BackupPath: backupPath}

	if f.Fix.RequiresRestart && f.Fix.RestartTarget != "" {
		if err := e.restartAndVerify(ctx, f.Fix.RestartTarget); err != nil {
			// Roll back from the in-memory pre-fix content, not by
			// re-reading the backup file.
			if rbErr := writeFileAtomic(f.Fix.TargetPath, original); rbErr != nil {
				e.log.ErrorWithErr(rbErr, "Rollback write failed; backup remains on disk")
			}
			restartErr := errors.RestartError(
				fmt.Sprintf("container %s did not come back after restart; content rolled back", f.Fix.RestartTarget), err)
			metrics.RecordFix("restart_error")
			return &finding.FixResult{Success: false, BackupPath: backupPath, Error: restartErr.Error()}, restartErr
		}
		result.RestartedContainer = f.Fix.RestartTarget
	}

	now := time.Now().UTC()
	result.AppliedAt = &now
	metrics.RecordFix("success")

	e.log.WithFields(map[string]interface{}{
		"finding_id": f.ID,
		"path":       f.Fix.TargetPath,
		"backup":     backupPath,
		"restarted":  result.RestartedContainer,
	}).Info("Fix applied")

	return result, nil
}

// restartAndVerify restarts (or starts) the container, waits briefly, then
// performs one verification poll. This is a bounded wait, not a retry loop.
func (e *Engine) restartAndVerify(ctx context.Context, name string) error {
	if err := e.lifecycle.RestartOrStart(ctx, name); err != nil {
		return err
	}

	select {
	case <-time.After(e.restartWait):
	case <-ctx.Done():
		return ctx.Err()
	}

	running, err := e.lifecycle.IsRunning(ctx, name)
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("container %s is not running after restart", name)
	}
	return nil
}

// writeBackup writes the pre-fix content to a uniquely named backup file.
// The name carries the target base name, a timestamp and the finding id, so
// concurrent applies of different findings against the same file cannot
// collide. Backups are never overwritten or deleted by this engine.
func (e *Engine) writeBackup(f *finding.Finding, content string) (string, error) {
	dir := e.backupDir
	if dir == "" {
		dir = filepath.Dir(f.Fix.TargetPath)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.IOError(fmt.Sprintf("failed to create backup directory %s", dir), err)
	}

	name := fmt.Sprintf("%s.%s.%s.bak",
		filepath.Base(f.Fix.TargetPath),
		time.Now().UTC().Format("20060102T150405"),
		f.ID,
	)
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", errors.IOError(fmt.Sprintf("failed to write backup %s", path), err)
	}
	return path, nil
}

// writeFileAtomic writes via a temp file in the same directory followed by
// a rename into place.
func writeFileAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
