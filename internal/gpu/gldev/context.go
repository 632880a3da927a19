package gldev

import (
	"fmt"
	"runtime"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/softbody/internal/logger"
)

func init() {
	// GL calls must stay on the thread that created the context.
	runtime.LockOSThread()
}

// Context is a GL 4.3 core context backed by a hidden SDL2 window.
type Context struct {
	window    *sdl.Window
	glContext sdl.GLContext
}

// NewContext initializes SDL2, creates a hidden window with a GL 4.3 core
// context, and loads the GL entry points.
func NewContext() (*Context, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("SDL_Init failed: %w", err)
	}

	// Compute shaders and storage blocks need 4.3.
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, 4)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, 3)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE)

	c := &Context{}
	var err error
	c.window, err = sdl.CreateWindow("softbody", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		1, 1, sdl.WINDOW_OPENGL|sdl.WINDOW_HIDDEN)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("SDL_CreateWindow failed: %w", err)
	}

	c.glContext, err = c.window.GLCreateContext()
	if err != nil {
		c.window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("SDL_GL_CreateContext failed: %w", err)
	}

	if err := gl.Init(); err != nil {
		c.Close()
		return nil, fmt.Errorf("gl init: %w", err)
	}

	logger.Info("GL context created",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))
	return c, nil
}

// Close destroys the context and shuts SDL2 down.
func (c *Context) Close() {
	if c.glContext != nil {
		sdl.GLDeleteContext(c.glContext)
	}
	if c.window != nil {
		c.window.Destroy()
	}
	sdl.Quit()
}
