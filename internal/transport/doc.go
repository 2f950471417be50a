/*
Package transport provides the live audio/video/input connection used by a
streaming session.

Two drivers are available:

  - Helper runs an external streaming client under a pseudo-terminal. Its
    output is parsed for connection progress and copied into the log; the
    process exiting on its own is reported as a terminated connection.
  - Null connects instantly and stays up until stopped. It is used for
    development and tests, and to drive the control plane without a
    decoder.

New selects a driver by name.
*/
package transport
