// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

/*
Package core holds the concepts and pure logic of the backup uploader: the
session states and verification codes, and the logging interface the
workers accept.

Nothing in here may talk to the network, the filesystem or the remote drive.
In particular:

  - it's fine to import from any subpackage of core
  - but never import from internal, apiserver or cmd
  - no mutable global state
*/
package core
