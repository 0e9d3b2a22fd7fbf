// ABOUTME: Package documentation for the cable engine
// ABOUTME: Describes the tick, buffer and mute model
/*
Package cable implements a software virtual audio cable.

A Cable owns a fixed transfer buffer of ChunkSize*ChunkCount stereo float32
frames. The host writes producer audio into it with ClipOutput and reads it
back for the consumer with ConvertInput. Neither call blocks.

The cable has no hardware clock. A Scheduler fires once per chunk interval
(ChunkSize / SampleRate), advances the chunk counter and rearms itself for
the nominal interval plus the error of the tick that just fired, so the
long-run rate stays locked to the clock.

On each tick the cable checks how many producers are attached. With none,
it is muted and the consumer receives silence. When a producer returns the
buffer is cleared once before audio is let through again.

Example:

	c, err := cable.New(cable.Config{
		Name:    "SDR-RX",
		Clients: cable.ClientCounterFunc(stream.Clients),
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := c.Start(); err != nil {
		log.Fatal(err)
	}
	defer c.Stop()
*/
package cable
