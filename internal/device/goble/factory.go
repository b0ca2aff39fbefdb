package goble

// DeviceFactory opens the platform radio (can be overridden in tests)
var DeviceFactory = newPlatformDevice
