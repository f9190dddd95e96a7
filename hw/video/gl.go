package video

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/veandco/go-sdl2/sdl"
)

type glWindow struct {
	*sdl.Window
	context sdl.GLContext

	prog    uint32
	texture uint32
	vao     uint32

	texw, texh int32
}

// newGLWindow creates an OpenGL window showing a (texw, texh) texture on a
// full window quad, initially scaled by scale. Must run on the SDL thread.
func newGLWindow(title string, texw, texh, scale int, monitor int32, vsync bool) (*glWindow, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_GAMECONTROLLER); err != nil {
		return nil, fmt.Errorf("failed to initialize SDL: %s", err)
	}

	sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, 3)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, 3)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE)

	winw, winh := int32(texw*scale), int32(texh*scale)
	x, y := int32(sdl.WINDOWPOS_CENTERED), int32(sdl.WINDOWPOS_CENTERED)
	if bounds, err := sdl.GetDisplayBounds(int(monitor)); err == nil {
		x = bounds.X + (bounds.W-winw)/2
		y = bounds.Y + (bounds.H-winh)/2
	}

	w, err := sdl.CreateWindow(title, x, y, winw, winh,
		sdl.WINDOW_OPENGL|sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %s", err)
	}

	context, err := w.GLCreateContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenGL context: %s", err)
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize opengl: %s", err)
	}

	interval := 0
	if vsync {
		interval = 1
	}
	if err := sdl.GLSetSwapInterval(interval); err != nil {
		return nil, fmt.Errorf("failed to set swap interval: %s", err)
	}

	var texture uint32
	gl.GenTextures(1, &texture)
	gl.BindTexture(gl.TEXTURE_2D, texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(texw), int32(texh), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)

	prog, err := buildProgram(vertexShader, fragmentShader)
	if err != nil {
		return nil, err
	}

	// The quad is generated by the vertex shader, the core profile still
	// wants a bound vertex array.
	var vao uint32
	gl.GenVertexArrays(1, &vao)

	return &glWindow{
		Window:  w,
		context: context,
		prog:    prog,
		texture: texture,
		vao:     vao,
		texw:    int32(texw),
		texh:    int32(texh),
	}, nil
}

// render uploads pix as the new texture content and draws it. Must run on
// the SDL thread.
func (w *glWindow) render(pix []byte) {
	dw, dh := w.GLGetDrawableSize()
	gl.Viewport(0, 0, dw, dh)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	gl.BindTexture(gl.TEXTURE_2D, w.texture)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, w.texw, w.texh, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&pix[0]))

	gl.UseProgram(w.prog)
	gl.BindVertexArray(w.vao)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)

	w.GLSwap()
}

func (w *glWindow) destroy() error {
	if w.context != nil {
		sdl.GLDeleteContext(w.context)
	}
	err := w.Destroy()
	sdl.Quit()
	return err
}

// vertexShader emits a viewport-wide triangle strip from vertex ids 0-3,
// texture row 0 at the top.
const vertexShader = `
#version 330 core
out vec2 uv;

void main() {
    uv = vec2(gl_VertexID & 1, gl_VertexID >> 1);
    gl_Position = vec4(uv.x*2.0 - 1.0, 1.0 - uv.y*2.0, 0.0, 1.0);
}
` + "\x00"

const fragmentShader = `
#version 330 core
in vec2 uv;
out vec4 color;

uniform sampler2D screen;

void main() {
    color = texture(screen, uv);
}
` + "\x00"

func buildProgram(vsrc, fsrc string) (uint32, error) {
	prog := gl.CreateProgram()
	for _, stage := range []struct {
		typ uint32
		src string
	}{
		{gl.VERTEX_SHADER, vsrc},
		{gl.FRAGMENT_SHADER, fsrc},
	} {
		sh := gl.CreateShader(stage.typ)
		csrc, free := gl.Strs(stage.src)
		gl.ShaderSource(sh, 1, csrc, nil)
		free()
		gl.CompileShader(sh)

		var status int32
		if gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status); status == gl.FALSE {
			var buf [512]byte
			var n int32
			gl.GetShaderInfoLog(sh, int32(len(buf)), &n, &buf[0])
			return 0, fmt.Errorf("shader compilation: %s", buf[:n])
		}
		gl.AttachShader(prog, sh)
		gl.DeleteShader(sh)
	}

	gl.LinkProgram(prog)
	var status int32
	if gl.GetProgramiv(prog, gl.LINK_STATUS, &status); status == gl.FALSE {
		var buf [512]byte
		var n int32
		gl.GetProgramInfoLog(prog, int32(len(buf)), &n, &buf[0])
		return 0, fmt.Errorf("shader program link: %s", buf[:n])
	}
	return prog, nil
}
