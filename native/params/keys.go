package params

// ParamsKeyPauses stores the module pause configuration.
const ParamsKeyPauses = "system/pauses"
