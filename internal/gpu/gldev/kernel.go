package gldev

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/softbody/internal/gpu"
	"github.com/Faultbox/softbody/internal/logger"
)

// SourceExt is the file extension of compute shader sources.
const SourceExt = ".comp"

type binding struct {
	target uint32
	point  uint32
	buf    *gpu.Buffer
}

type program struct {
	id       uint32
	bindings []binding
	next     [2]uint32 // next free binding point per target class
}

// Kernel runs one compute program per pass.
type Kernel struct {
	programs map[gpu.Pass]*program
	log      *zap.Logger
}

// LoadSources reads "<pass>.comp" from dir for every pass in passes.
func LoadSources(dir string, passes ...gpu.Pass) (map[gpu.Pass]string, error) {
	out := make(map[gpu.Pass]string, len(passes))
	for _, p := range passes {
		path := filepath.Join(dir, p.String()+SourceExt)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s source: %w", p, err)
		}
		out[p] = string(data)
	}
	return out, nil
}

// NewKernel compiles and links a compute program per source. On error every
// program linked so far is deleted.
func NewKernel(sources map[gpu.Pass]string) (*Kernel, error) {
	k := &Kernel{
		programs: make(map[gpu.Pass]*program, len(sources)),
		log:      logger.Named("gldev"),
	}
	for pass, src := range sources {
		id, err := compileCompute(src, pass.String())
		if err != nil {
			k.Delete()
			return nil, err
		}
		k.programs[pass] = &program{id: id}
		k.log.Debug("compute program linked", zap.Stringer("pass", pass), zap.Uint32("program", id))
	}
	return k, nil
}

// Bind implements gpu.Kernel. slot names the storage or uniform block in
// the program; blocks the program does not declare are skipped.
func (k *Kernel) Bind(p gpu.Pass, slot string, b *gpu.Buffer) error {
	prog, ok := k.programs[p]
	if !ok {
		return fmt.Errorf("%w: %s", gpu.ErrUnknownPass, p)
	}

	name, free := gl.Strs(slot + "\x00")
	defer free()

	if b.Layout().Class == gpu.Constant {
		idx := gl.GetUniformBlockIndex(prog.id, *name)
		if idx == gl.INVALID_INDEX {
			k.log.Debug("uniform block not declared", zap.Stringer("pass", p), zap.String("slot", slot))
			return nil
		}
		point := prog.next[1]
		prog.next[1]++
		gl.UniformBlockBinding(prog.id, idx, point)
		prog.bindings = append(prog.bindings, binding{target: gl.UNIFORM_BUFFER, point: point, buf: b})
		return nil
	}

	idx := gl.GetProgramResourceIndex(prog.id, gl.SHADER_STORAGE_BLOCK, *name)
	if idx == gl.INVALID_INDEX {
		k.log.Debug("storage block not declared", zap.Stringer("pass", p), zap.String("slot", slot))
		return nil
	}
	point := prog.next[0]
	prog.next[0]++
	gl.ShaderStorageBlockBinding(prog.id, idx, point)
	prog.bindings = append(prog.bindings, binding{target: gl.SHADER_STORAGE_BUFFER, point: point, buf: b})
	return nil
}

// Dispatch implements gpu.Kernel. Storage writes are visible to the next
// dispatch and to readback when it returns.
func (k *Kernel) Dispatch(p gpu.Pass, x, y, z int) error {
	prog, ok := k.programs[p]
	if !ok {
		return fmt.Errorf("%w: %s", gpu.ErrUnknownPass, p)
	}
	if x <= 0 || y <= 0 || z <= 0 {
		return nil
	}

	gl.UseProgram(prog.id)
	for _, bnd := range prog.bindings {
		if bnd.buf.Released() {
			return fmt.Errorf("%w: %s", gpu.ErrBufferReleased, bnd.buf.Name())
		}
		gl.BindBufferBase(bnd.target, bnd.point, uint32(bnd.buf.Handle()))
	}
	gl.DispatchCompute(uint32(x), uint32(y), uint32(z))
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("dispatch %s: gl error 0x%x", p, code)
	}
	return nil
}

// Delete deletes every program.
func (k *Kernel) Delete() {
	for p, prog := range k.programs {
		gl.DeleteProgram(prog.id)
		delete(k.programs, p)
	}
}

// compileCompute compiles a compute shader and links it into a program.
func compileCompute(source, name string) (uint32, error) {
	shader := gl.CreateShader(gl.COMPUTE_SHADER)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s compute shader: %s", name, strings.TrimRight(log, "\x00"))
	}
	defer gl.DeleteShader(shader)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, shader)
	gl.LinkProgram(prog)

	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("%s link: %s", name, strings.TrimRight(log, "\x00"))
	}
	return prog, nil
}
