/*
Package iso7816 implements the APDU (Application Protocol Data Unit) layer used to talk to a card terminal and the card inserted into it.

It provides the Command and Response byte containers, Status Word (SW) analysis, the instruction codes and command builders needed for memory cards (SELECT, READ BINARY, UPDATE BINARY, VERIFY, CHANGE REFERENCE DATA), and a BER-TLV parser for the File Control Parameters returned by SELECT.

# Fundamentals

The communication with a card terminal is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Terminal (or the card behind it) processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

Commands and responses are immutable byte sequences. They render as colon-separated lowercase hex ("00:a4:00:00") regardless of content.

# Status Words

Every response ends with a 2-byte Status Word (SW). Three trailers drive the terminal session logic:
  - 0x9000: Success.
  - 0x6200: Changed (a REQUEST ICC found a new card, or none within the timeout).
  - 0x6201: Not changed (the card is the one already activated).

# Usage Example

	cmd, err := iso7816.ParseCommand("00:b0:00:00:10")
	if err != nil {
	    log.Fatal(err) // *iso7816.FormatError
	}

	raw, _ := transport.Exchange(ctn, ctbcs.ICC1, ctbcs.HOST, cmd.Bytes())
	resp := iso7816.NewResponse(raw)

	if resp.IsSuccessful() {
	    fmt.Printf("Read %d bytes: %s\n", len(resp.Data()), resp)
	}
*/
package iso7816
