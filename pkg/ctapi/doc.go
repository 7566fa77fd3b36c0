// Package ctapi manages CT-API card terminal sessions and the memory card
// inside them.
//
// # Overview
//
// A Terminal is one open CT-API channel (a terminal number bound to a port).
// Opening a terminal:
//   - allocates a terminal number from a Registry
//   - opens the channel through a Transport (CT_init)
//   - reads the manufacturer block of the terminal
//   - resets the card slot and decodes the card ATR
//   - selects the master file of the card
//
// # Basic Usage
//
//	reg := ctapi.NewRegistry()
//	err := reg.With(transport, ctbcs.COM1, func(t *ctapi.Terminal) error {
//	    fmt.Println(t.Manufacturer(), t.Card())
//	    data, err := t.ReadAll(0)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Printf("%X\n", data)
//	    return nil
//	})
//
// # Configuration Options
//
//	t, err := reg.Open(transport, ctbcs.COM2,
//	    ctapi.WithNumber(3),
//	    ctapi.WithChunkSize(64),
//	    ctapi.WithLogger(logger),
//	    ctapi.WithTrace(true),
//	)
//
// # Errors
//
// Argument errors (*ArgumentError) are returned before anything is sent.
// Transport failures surface as errors, CT-API return codes as *Error.
// A card answering with anything other than 90 00 is not an error: the
// operation reports false or no data.
//
// # Transfers
//
// Read and Write move data in chunks of at most ChunkSize bytes. A read that
// fails midway returns what was read so far. A write that fails midway
// reports false, chunks already written stay written.
package ctapi
