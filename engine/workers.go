package engine

import "github.com/gosampler/rtengine/enginechannel"

// channelJob is one channel's per-cycle drain+trigger+render work, sent to a
// worker goroutine. Grounded structurally on
// _examples/vsariola-sointu/vm/multithread_synth.go's
// multithreadSynthCommand/multithreadSynthResult persistent worker pool,
// generalized from "voices split across cores" to "channels split across
// cores" (each EngineChannel's pool/bus is private, so channels never alias
// each other's state and need no synchronization beyond the result barrier).
type channelJob struct {
	channel *enginechannel.Channel
	frames  int
}

type channelJobResult struct{}

// workerPool fans channelJobs across a fixed number of goroutines and
// blocks until every dispatched job's result has been collected, mirroring
// the teacher's commands/results channel pair.
type workerPool struct {
	commands chan channelJob
	results  chan channelJobResult
	n        int
}

func newWorkerPool(n int) *workerPool {
	if n < 1 {
		n = 1
	}
	p := &workerPool{
		commands: make(chan channelJob, n),
		results:  make(chan channelJobResult, n),
		n:        n,
	}
	for i := 0; i < n; i++ {
		go func(cmds <-chan channelJob, results chan<- channelJobResult) {
			for job := range cmds {
				job.channel.RenderCycle(job.frames)
				results <- channelJobResult{}
			}
		}(p.commands, p.results)
	}
	return p
}

// RenderAll dispatches RenderCycle(frames) for every channel and blocks
// until all have completed.
func (p *workerPool) RenderAll(channels []*enginechannel.Channel, frames int) {
	if p.n <= 1 || len(channels) <= 1 {
		for _, c := range channels {
			c.RenderCycle(frames)
		}
		return
	}
	for _, c := range channels {
		p.commands <- channelJob{channel: c, frames: frames}
	}
	for range channels {
		<-p.results
	}
}

// Close shuts down the worker pool's goroutines. Not safe to call
// concurrently with RenderAll.
func (p *workerPool) Close() { close(p.commands) }
