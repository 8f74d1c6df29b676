package invoker

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// outputPipes copies the child's stdout and stderr into their buffers.
// Wait returns as soon as the child exits because exec sees plain files,
// even when something the child spawned still holds the write ends.
type outputPipes struct {
	readers []*os.File
	writers []*os.File
	wg      sync.WaitGroup
}

// attachOutput wires fresh pipes to cmd's stdout and stderr and starts copying.
func attachOutput(cmd *exec.Cmd, stdout, stderr io.Writer) (*outputPipes, error) {
	p := &outputPipes{}
	for _, dst := range []io.Writer{stdout, stderr} {
		r, w, err := os.Pipe()
		if err != nil {
			p.abort()
			return nil, err
		}
		p.readers = append(p.readers, r)
		p.writers = append(p.writers, w)
		p.wg.Go(func() { _, _ = io.Copy(dst, r) })
	}
	cmd.Stdout = p.writers[0]
	cmd.Stderr = p.writers[1]
	return p, nil
}

// started closes the parent's copies of the write ends; the child holds its own.
func (p *outputPipes) started() {
	for _, w := range p.writers {
		_ = w.Close()
	}
}

// abort releases the pipes of a process that never started.
func (p *outputPipes) abort() {
	p.started()
	p.wg.Wait()
	p.closeReaders()
}

// drain waits up to timeout for the write ends to close and the copies to
// finish. When they do not, the read ends are closed to stop the copies and
// drain reports false.
func (p *outputPipes) drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.closeReaders()
		return true
	case <-timer.C:
		p.closeReaders()
		<-done
		return false
	}
}

func (p *outputPipes) closeReaders() {
	for _, r := range p.readers {
		_ = r.Close()
	}
}
