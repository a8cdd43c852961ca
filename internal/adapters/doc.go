// Package adapters implements persistence for adapter modules and
// prediction heads of transformer models.
//
// A saved artifact is a directory holding exactly two files: a JSON config
// sidecar and a binary weights archive. Loaders extract the parameter
// subset belonging to one adapter or head from a model's state dictionary,
// write it next to its config, and merge it back into a live model on
// load, renaming parameter keys when the adapter is imported under a new
// name.
//
// The package has three layers:
//
//   - WeightsLoader implementations (AdapterLoader, PredictionHeadLoader)
//     sharing the filtered save/load plumbing,
//   - registries for adapter and head configs, owned by the model config,
//   - AdapterManager / HeadedAdapterManager, the composed facade exposing
//     SaveAdapter, LoadAdapter, SaveAllAdapters, SaveHead, LoadHead and
//     FreezeModel.
//
// All operations are synchronous and single-threaded; concurrent save or
// load against the same model or directory is unsupported.
package adapters
