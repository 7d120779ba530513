package segment

import (
	"context"
	"fmt"
	"log"

	"github.com/ayusman/inkcam/internal/plugin"
)

// PassthroughBlender returns the overlay unchanged.
type PassthroughBlender struct{}

// Blend implements Blender.
func (PassthroughBlender) Blend(ctx context.Context, imageURI string, tone SkinTone, opacity float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return imageURI, nil
}

// PluginBlender delegates blending to an external plugin and falls back to
// the unblended image when the plugin fails.
type PluginBlender struct {
	manager  *plugin.Manager
	executor *plugin.Executor
	name     string
}

// NewPluginBlender creates a blender that runs the named plugin from manager.
func NewPluginBlender(manager *plugin.Manager, executor *plugin.Executor, name string) (*PluginBlender, error) {
	p, err := manager.Get(name)
	if err != nil {
		return nil, fmt.Errorf("blend plugin %q: %w", name, err)
	}
	if !p.Manifest.Supports(plugin.ActionBlend) {
		return nil, fmt.Errorf("plugin %q does not support %s", name, plugin.ActionBlend)
	}
	return &PluginBlender{manager: manager, executor: executor, name: name}, nil
}

// Blend implements Blender. Plugin errors are logged and the input image is
// returned; only context cancellation is reported to the caller.
func (b *PluginBlender) Blend(ctx context.Context, imageURI string, tone SkinTone, opacity float64) (string, error) {
	if opacity <= 0 {
		opacity = DefaultOpacity
	}

	p, err := b.manager.Get(b.name)
	if err != nil {
		log.Printf("blend plugin %s: %v", b.name, err)
		return imageURI, nil
	}

	out, err := b.executor.Blend(ctx, p, imageURI, plugin.Color{R: tone.R, G: tone.G, B: tone.B}, opacity)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		log.Printf("blend plugin %s: %v", b.name, err)
		return imageURI, nil
	}
	return out, nil
}

// Name returns the plugin the blender runs.
func (b *PluginBlender) Name() string {
	return b.name
}
